package etcd

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"

	"gopherex.com/xmatch/pkg/register"
)

func TestInstanceKey(t *testing.T) {
	ins := &register.Instance{ID: "10.0.0.1:8080", Name: "matchd"}
	assert.Equal(t, "/xmatch/services/matchd/10.0.0.1:8080", instanceKey(DefaultBasePath, ins))
}

func TestPickOne(t *testing.T) {
	assert.Nil(t, PickOne(nil))
	ins := []register.Instance{{ID: "a"}, {ID: "b"}}
	for range 20 {
		p := PickOne(ins)
		require.NotNil(t, p)
		assert.Contains(t, []string{"a", "b"}, p.ID)
	}
}

// 需要真实 etcd：XMATCH_ETCD_ENDPOINTS=127.0.0.1:2379
func TestRegisterDiscovery(t *testing.T) {
	eps := os.Getenv("XMATCH_ETCD_ENDPOINTS")
	if eps == "" {
		t.Skip("XMATCH_ETCD_ENDPOINTS not set")
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   strings.Split(eps, ","),
		DialTimeout: 3 * time.Second,
	})
	require.NoError(t, err)
	defer cli.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	base := "/xmatch-test/" + uuid.NewString()
	r := NewEtcdRegister(cli, base, 5)
	ins := &register.Instance{ID: "127.0.0.1:18080", Name: "matchd", Addr: "127.0.0.1:18080",
		MetaData: map[string]string{"match_depth": "single"}}
	require.NoError(t, r.Register(ctx, ins))

	got, err := Discovery(ctx, cli, base, "matchd")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, *ins, got[0])

	require.NoError(t, r.UnRegister(ctx, ins))
	got, err = Discovery(ctx, cli, base, "matchd")
	require.NoError(t, err)
	assert.Empty(t, got)
}
