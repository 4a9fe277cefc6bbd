package etcd

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/segmentio/encoding/json"
	clientv3 "go.etcd.io/etcd/client/v3"

	"gopherex.com/xmatch/pkg/register"
)

// Discovery 列出 basePath/serviceName 下的所有实例，解析失败的跳过
func Discovery(ctx context.Context, client *clientv3.Client, basePath string, serviceName string) ([]register.Instance, error) {
	if basePath == "" {
		basePath = DefaultBasePath
	}
	prefix := fmt.Sprintf("%s/%s/", basePath, serviceName)
	res, err := client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	out := make([]register.Instance, 0, len(res.Kvs))
	for _, kv := range res.Kvs {
		var ins register.Instance
		if err := json.Unmarshal(kv.Value, &ins); err != nil {
			continue
		}
		out = append(out, ins)
	}
	return out, nil
}

func PickOne(instances []register.Instance) *register.Instance {
	if len(instances) == 0 {
		return nil
	}
	return &instances[rand.IntN(len(instances))]
}
