package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/talismans/server/internal/proxy"
	"github.com/talismans/server/internal/world"
)

var capabilitiesHost string

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "Show which provider serves each capability for a host version",
	Args:  cobra.NoArgs,
	RunE:  runCapabilities,
}

func init() {
	capabilitiesCmd.Flags().StringVar(&capabilitiesHost, "host-version", "",
		"host version to resolve for (default: server.host_version)")
}

func runCapabilities(_ *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	raw := cfg.Server.HostVersion
	if capabilitiesHost != "" {
		raw = capabilitiesHost
	}
	version, err := proxy.ParseVersion(raw)
	if err != nil {
		return err
	}

	resolver := proxy.NewResolver(version, world.NewState(), proxy.Providers, zap.NewNop())
	if err := resolver.Preflight(proxy.Capabilities()...); err != nil {
		return err
	}

	printSection(fmt.Sprintf("能力 (%s)", version))
	for _, b := range resolver.Bindings() {
		printStat(b.Capability, b.Provider)
	}
	return nil
}
