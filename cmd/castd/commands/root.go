package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/castkit/castkit/internal/channel"
	"github.com/castkit/castkit/internal/config"
	"github.com/castkit/castkit/internal/dispatch"
	"github.com/castkit/castkit/internal/hub"
	"github.com/castkit/castkit/internal/media"
	"github.com/castkit/castkit/internal/rtc"
	"github.com/castkit/castkit/internal/session"
	wire "github.com/castkit/castkit/internal/signal"
	"github.com/castkit/castkit/internal/util"
)

var version = "dev"

var _config = config.NewDefaultConfig()

// RootCmd is the root command for the castd host.
var RootCmd = &cobra.Command{
	Use:     "castd",
	Short:   "WebRTC answering host with data-channel messaging",
	PreRunE: loadConfig,
	RunE:    runHost,
}

func init() {
	RootCmd.Flags().StringP("listen", "l", _config.ListenAddr, "Listen IP:Port for the signaling endpoint")
	RootCmd.Flags().String("endpoint", _config.Endpoint, "WebSocket endpoint path")
	RootCmd.Flags().StringSlice("ice", _config.ICEServers, "STUN/TURN server URLs relayed to peer connections")
	RootCmd.Flags().String("rtp-listen", _config.RTPAddr, "UDP address for RTP video ingest (empty disables outbound media)")
	RootCmd.Flags().Bool("debug", _config.Debug, "Enable debug logging")
}

// loadConfig binds the command flags into viper and unmarshals the result.
func loadConfig(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}
	if _config.Debug {
		util.EnableDebug()
	}
	return nil
}

// runHost builds the components, wires them together explicitly, and serves
// until a SIGINT or SIGTERM arrives.
func runHost(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pterm.Info.Println(fmt.Sprintf("castd — v%s", version))

	h := hub.New(_config.Endpoint)

	messenger := channel.NewMessenger(func(text string) {
		// The core only hands the payload off; interpretation belongs to
		// the application layer.
		util.LogInfo("peer message: %s", text)
	})

	var source session.MediaSource
	var rtpSource *media.RTPSource
	if _config.RTPAddr != "" {
		rtpSource = media.NewRTPSource(_config.RTPAddr)
		source = rtpSource
	}

	emitter := session.EmitterFunc(func(msg wire.Message) error {
		data, err := wire.Encode(msg)
		if err != nil {
			return err
		}
		return h.Broadcast(data)
	})

	factory := rtc.NewFactory(_config.ICEServers)
	engine := session.NewEngine(
		func() (session.PeerConn, error) { return factory.New() },
		emitter,
		messenger,
		source,
	)
	go engine.Run(ctx)

	d := dispatch.New(engine, messenger)
	h.OnMessage(d.HandleMessage)
	h.OnDisconnect(func(peerID string) {
		// One active peer at a time: a disconnect releases the session so
		// the next offer starts fresh.
		engine.Teardown()
	})
	go h.Run()

	util.StartStatsReporter(ctx)

	srv := &http.Server{
		Addr:    _config.ListenAddr,
		Handler: h.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		util.LogInfo("signaling endpoint on ws://%s%s", _config.ListenAddr, _config.Endpoint)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("signaling server: %w", err)
	}

	util.LogInfo("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		util.LogWarning("server shutdown: %v", err)
	}

	h.Stop()
	engine.Close()
	if rtpSource != nil {
		rtpSource.Close()
	}
	return nil
}
