package handler

import (
	"context"
	"errors"

	"gopherex.com/xmatch/internal/engine"
	"gopherex.com/xmatch/internal/intake"
	"gopherex.com/xmatch/internal/matching"
	"gopherex.com/xmatch/pkg/xerr"
)

// codeErr 引擎错误 -> 业务码
func codeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, matching.ErrInvalidOrder),
		errors.Is(err, engine.ErrBadCommand),
		errors.Is(err, intake.ErrBadPrice):
		return xerr.Wrap(err, xerr.RequestParamsError, "")
	case errors.Is(err, engine.ErrUnknownSym):
		return xerr.Wrap(err, xerr.UnknownSymbol, "")
	case errors.Is(err, engine.ErrEngineBusy),
		errors.Is(err, context.DeadlineExceeded):
		return xerr.Wrap(err, xerr.EngineBusy, "")
	case errors.Is(err, engine.ErrEngineStopped),
		errors.Is(err, engine.ErrWALFailed):
		return xerr.Wrap(err, xerr.EngineStopped, "")
	default:
		return xerr.Wrap(err, xerr.ServerCommonError, "")
	}
}
