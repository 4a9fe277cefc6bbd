package xerr

import (
	"errors"
	"fmt"
	"net/http"
)

// 业务错误码：前三位是模块，后四位是具体错误
const (
	OK                 = 200
	RequestParamsError = 1001001
	UnknownSymbol      = 1001004
	OrderNotFound      = 1001005
	NoTrade            = 1001006
	TooManyRequests    = 1003001
	EngineBusy         = 1004001
	EngineStopped      = 1004002
	ServerCommonError  = 5000000
)

type CodeError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	err  error
}

func (e *CodeError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("ErrCode:%d, Msg:%s, Cause:%v", e.Code, e.Msg, e.err)
	}
	return fmt.Sprintf("ErrCode:%d, Msg:%s", e.Code, e.Msg)
}

func (e *CodeError) Unwrap() error { return e.err }

func New(code int, msg string) error {
	return &CodeError{Code: code, Msg: msg}
}

func NewErrCode(code int) error {
	return &CodeError{Code: code, Msg: MapErrMsg(code)}
}

// Wrap 给底层错误挂上业务码，errors.Is 仍然能找到原始错误
func Wrap(err error, code int, msg string) error {
	if err == nil {
		return nil
	}
	if msg == "" {
		msg = MapErrMsg(code)
	}
	return &CodeError{Code: code, Msg: msg, err: err}
}

// CodeOf 取业务码，不是 CodeError 的一律当服务端错误
func CodeOf(err error) (int, string) {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code, ce.Msg
	}
	return ServerCommonError, MapErrMsg(ServerCommonError)
}

// HTTPStatus 业务码对应的 http 状态码
func HTTPStatus(code int) int {
	switch code {
	case OK:
		return http.StatusOK
	case RequestParamsError:
		return http.StatusBadRequest
	case UnknownSymbol, OrderNotFound, NoTrade:
		return http.StatusNotFound
	case TooManyRequests:
		return http.StatusTooManyRequests
	case EngineBusy, EngineStopped:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func MapErrMsg(code int) string {
	switch code {
	case ServerCommonError:
		return "服务器开小差了"
	case RequestParamsError:
		return "参数错误"
	case UnknownSymbol:
		return "交易对不存在"
	case OrderNotFound:
		return "挂单不存在"
	case NoTrade:
		return "暂无成交"
	case TooManyRequests:
		return "请求过于频繁"
	case EngineBusy:
		return "撮合繁忙"
	case EngineStopped:
		return "撮合已停止"
	default:
		return "未知错误"
	}
}
