package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"strings"
	"time"

	"github.com/segmentio/encoding/json"
	clientv3 "go.etcd.io/etcd/client/v3"

	"gopherex.com/xmatch/pkg/register/etcd"
)

// discoverCmd matchctl discover -etcd 127.0.0.1:2379 [-pick]
func discoverCmd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	endpoints := fs.String("etcd", "127.0.0.1:2379", "etcd endpoints, comma separated")
	base := fs.String("base", etcd.DefaultBasePath, "registry base path")
	service := fs.String("service", "matchd", "service name")
	pick := fs.Bool("pick", false, "print one random instance addr")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   strings.Split(*endpoints, ","),
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return err
	}
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	list, err := etcd.Discovery(ctx, cli, *base, *service)
	if err != nil {
		return err
	}
	if *pick {
		ins := etcd.PickOne(list)
		if ins == nil {
			return errors.New("no instance registered")
		}
		_, err := io.WriteString(out, ins.Addr+"\n")
		return err
	}
	enc := json.NewEncoder(out)
	for _, ins := range list {
		if err := enc.Encode(ins); err != nil {
			return err
		}
	}
	return nil
}
