// Command dnp3-outstation runs a demo DNP3 outstation over TCP,
// reporting a handful of static points and accepting restart requests.
package main

import (
	"context"
	"flag"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dnp3go/dnp3/pkg/config"
	"github.com/dnp3go/dnp3/pkg/link"
	"github.com/dnp3go/dnp3/pkg/outstation"
	"github.com/dnp3go/dnp3/pkg/transport"
)

const defaultListenAddr = "127.0.0.1:20000"

func main() {
	log.SetLevel(log.InfoLevel)

	addr := flag.String("l", defaultListenAddr, "TCP address to listen on")
	configPath := flag.String("c", "", "path to an INI session config (optional)")
	flag.Parse()

	cfg := outstation.DefaultSessionConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.WithError(err).Fatal("failed to load session config")
		}
		cfg = loaded
	}

	listener, err := net.Listen("tcp", *addr)
	if err != nil {
		log.WithError(err).Fatal("failed to listen")
	}
	log.WithField("addr", *addr).Info("dnp3-outstation listening")

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.WithError(err).Error("accept failed")
			continue
		}
		go serveConnection(conn, cfg)
	}
}

func serveConnection(conn net.Conn, cfg outstation.SessionConfig) {
	defer conn.Close()
	log := log.WithField("remote", conn.RemoteAddr())
	log.Info("master connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var writer transport.Writer
	send := func(fragment []byte) error {
		for _, segment := range writer.Segment(fragment) {
			header := link.Header{
				Control: link.Control{Prm: true, Func: link.FuncUnconfirmedUserData},
				Dest:    cfg.MasterAddress,
				Src:     cfg.OutstationAddress,
			}
			buf := make([]byte, link.FramedLength(len(segment)))
			link.EncodeFrame(header, segment, buf)
			if _, err := conn.Write(buf); err != nil {
				return err
			}
		}
		return nil
	}

	db := &demoDatabase{}
	session := outstation.NewSession(cfg, demoDatabaseHandle{db: db}, &demoApplication{}, &demoControlHandler{db: db}, nil, nil, logrusEntry(log), send)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return session.Run(gctx)
	})
	g.Go(func() error {
		return pollLinkStatus(gctx, conn, cfg)
	})
	g.Go(func() error {
		return readLoop(gctx, conn, session)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Info("connection ended")
	}
}

// pollLinkStatus periodically asks the master to confirm the physical
// link is still alive. It is the only source of link-status requests:
// the session sends no link-layer frames of its own.
func pollLinkStatus(ctx context.Context, conn net.Conn, cfg outstation.SessionConfig) error {
	interval := cfg.KeepAliveTimeout
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			header := link.Header{
				Control: link.Control{Prm: true, Func: link.FuncRequestLinkStatus},
				Dest:    cfg.MasterAddress,
				Src:     cfg.OutstationAddress,
			}
			buf := make([]byte, link.FramedLength(0))
			link.EncodeFrame(header, nil, buf)
			if _, err := conn.Write(buf); err != nil {
				return err
			}
		}
	}
}

func readLoop(ctx context.Context, conn net.Conn, session *outstation.Session) error {
	reader := link.NewReader()
	reassembler := transport.NewReader()
	for {
		frame, err := reader.Read(ctx, conn)
		if err != nil {
			return err
		}
		broadcast := transport.BroadcastNone
		if frame.Header.Dest == 0xFFFF {
			broadcast = transport.BroadcastOptional
		}
		result := reassembler.Push(frame.Payload, broadcast)
		if result.Err != nil {
			continue
		}
		if result.Fragment == nil {
			continue
		}
		if err := session.PushFragment(ctx, result.Fragment, toSessionBroadcast(result.Info.Broadcast), result.Info.ID); err != nil {
			return err
		}
	}
}

// toSessionBroadcast maps the transport reassembler's link-layer
// broadcast classification onto the session's own BroadcastType, kept
// as a distinct type in pkg/outstation so the session package has no
// import-time dependency on pkg/transport.
func toSessionBroadcast(mode transport.BroadcastConfirmMode) outstation.BroadcastType {
	switch mode {
	case transport.BroadcastMandatory:
		return outstation.BroadcastTypeMandatory
	case transport.BroadcastOptional:
		return outstation.BroadcastTypeOptional
	default:
		return outstation.BroadcastTypeNone
	}
}

func logrusEntry(l *log.Entry) *log.Entry { return l }
