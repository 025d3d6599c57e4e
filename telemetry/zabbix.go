package telemetry

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ZabbixSender runs zabbix_sender once per item.
type ZabbixSender struct {
	Binary string
	Server string
	Host   string
}

// Name implements Sender.
func (z *ZabbixSender) Name() string { return "zabbix" }

// Send implements Sender.
func (z *ZabbixSender) Send(ctx context.Context, key, value string) error {
	cmd := exec.CommandContext(ctx, z.Binary, "-z", z.Server, "-s", z.Host, "-k", key, "-o", value)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("zabbix_sender %s: %w: %s", key, err, strings.TrimSpace(out.String()))
	}
	return nil
}

// Close implements Sender.
func (z *ZabbixSender) Close() error { return nil }
