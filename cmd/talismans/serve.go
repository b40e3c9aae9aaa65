package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/talismans/server/internal/config"
	"github.com/talismans/server/internal/engine"
	"github.com/talismans/server/internal/world"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine and its game loop until interrupted",
	Long: `Runs the talisman engine against the in-process host model: the game loop
ticks at network.tick_rate, the reload watcher follows the talisman documents,
and the effect journal is flushed in the background. SIGHUP forces a reload.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.HostVersion)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printSection("資料載入")
	eng, err := engine.New(ctx, engine.Options{Config: cfg, State: world.NewState(), Log: log})
	if err != nil {
		return err
	}
	defer eng.Close()

	printStat("護身符", len(eng.Registry().All()))
	for _, b := range eng.Resolver().Bindings() {
		printStat(b.Capability, b.Provider)
	}
	if eng.Journal() != nil {
		printOK("效果日誌已啟用")
	} else {
		printWarn("效果日誌未啟用")
	}
	fmt.Println()

	printSection("伺服器就緒")
	printReady(fmt.Sprintf("遊戲迴圈啟動 (tick: %s)", cfg.Network.TickRate))
	fmt.Println()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(ctx) })
	g.Go(func() error { return gameLoop(ctx, eng, cfg, log) })
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("伺服器已停止")
	return nil
}

// gameLoop owns the host model: every tick, dispatch turn and packet
// interception happens on this goroutine.
func gameLoop(ctx context.Context, eng *engine.Engine, cfg *config.Config, log *zap.Logger) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	ticker := time.NewTicker(cfg.Network.TickRate)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			eng.Tick(cfg.Network.TickRate)
		case <-hup:
			log.Info("收到重新載入信號")
			eng.Reload()
		case <-ctx.Done():
			log.Info("收到關閉信號")
			// Final dispatch turn so pending disconnects remove their modifiers.
			eng.Dispatch()
			return nil
		}
	}
}
