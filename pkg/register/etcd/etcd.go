package etcd

import (
	"context"
	"fmt"

	"github.com/segmentio/encoding/json"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"gopherex.com/xmatch/pkg/logger"
	"gopherex.com/xmatch/pkg/register"
)

const DefaultBasePath = "/xmatch/services"

type EtcdRegister struct {
	client   *clientv3.Client
	basePath string // 比如 "/xmatch/services"
	ttl      int64  // 租约秒数
	leaseID  clientv3.LeaseID
}

var _ register.Register = (*EtcdRegister)(nil)

func NewEtcdRegister(c *clientv3.Client, basePath string, ttl int64) *EtcdRegister {
	if basePath == "" {
		basePath = DefaultBasePath
	}
	if ttl <= 0 {
		ttl = 10
	}
	return &EtcdRegister{client: c, basePath: basePath, ttl: ttl}
}

func instanceKey(basePath string, ins *register.Instance) string {
	return fmt.Sprintf("%s/%s/%s", basePath, ins.Name, ins.ID)
}

// Register 写入带租约的 key 并保持心跳；ctx 结束后停止续约，key 在 ttl 后过期
func (e *EtcdRegister) Register(ctx context.Context, ins *register.Instance) error {
	lease, err := e.client.Grant(ctx, e.ttl)
	if err != nil {
		return fmt.Errorf("grant lease: %w", err)
	}
	e.leaseID = lease.ID

	val, err := json.Marshal(ins)
	if err != nil {
		return err
	}
	if _, err := e.client.Put(ctx, instanceKey(e.basePath, ins), string(val), clientv3.WithLease(e.leaseID)); err != nil {
		return fmt.Errorf("put instance: %w", err)
	}

	ch, err := e.client.KeepAlive(ctx, e.leaseID)
	if err != nil {
		return fmt.Errorf("keepalive: %w", err)
	}
	go e.drainKeepAlive(ctx, ins, ch)
	return nil
}

func (e *EtcdRegister) UnRegister(ctx context.Context, ins *register.Instance) error {
	if _, err := e.client.Delete(ctx, instanceKey(e.basePath, ins)); err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}
	if _, err := e.client.Revoke(ctx, e.leaseID); err != nil {
		return fmt.Errorf("revoke lease: %w", err)
	}
	return nil
}

// keepalive 的应答必须读掉，否则 client 会打满 channel 的告警
func (e *EtcdRegister) drainKeepAlive(ctx context.Context, ins *register.Instance, ch <-chan *clientv3.LeaseKeepAliveResponse) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				if ctx.Err() == nil {
					logger.Warn(ctx, "etcd keepalive channel closed",
						zap.String("service", ins.Name),
						zap.String("id", ins.ID),
						zap.Int64("lease", int64(e.leaseID)),
					)
				}
				return
			}
		}
	}
}
