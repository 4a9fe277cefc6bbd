package register

import "context"

// 注册中心里的实例信息
type Instance struct {
	ID       string            `json:"id"`        // 简单的用ip:port的方式
	Name     string            `json:"name"`      // 服务名称 eg:"matchd"
	Addr     string            `json:"addr"`      // ip:port
	MetaData map[string]string `json:"meta_data"` // 一些其他信息，比如 match_depth
}

type Register interface {
	Register(ctx context.Context, ins *Instance) error
	UnRegister(ctx context.Context, ins *Instance) error
}
