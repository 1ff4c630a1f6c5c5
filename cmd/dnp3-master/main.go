// Command dnp3-master connects to an outstation over TCP, issues a
// cold restart request, and prints the reported recovery delay.
package main

import (
	"context"
	"flag"
	"io"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dnp3go/dnp3/pkg/link"
	"github.com/dnp3go/dnp3/pkg/master"
	"github.com/dnp3go/dnp3/pkg/transport"
)

const defaultOutstationAddr = "127.0.0.1:20000"

func main() {
	log.SetLevel(log.InfoLevel)

	addr := flag.String("r", defaultOutstationAddr, "TCP address of the outstation")
	masterAddr := flag.Uint("master", 1, "this master's DNP3 link address")
	outstationAddr := flag.Uint("outstation", 1024, "the outstation's DNP3 link address")
	warm := flag.Bool("warm", false, "issue a warm restart instead of a cold restart")
	timeout := flag.Duration("timeout", 5*time.Second, "how long to wait for the response")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		log.WithError(err).Fatal("failed to connect")
	}
	defer conn.Close()

	restartType := master.ColdRestart
	if *warm {
		restartType = master.WarmRestart
	}
	task := &master.RestartTask{Type: restartType}

	var writer transport.Writer
	send := func(fragment []byte) error {
		for _, segment := range writer.Segment(fragment) {
			header := link.Header{
				Control: link.Control{Dir: true, Prm: true, Func: link.FuncUnconfirmedUserData},
				Dest:    uint16(*outstationAddr),
				Src:     uint16(*masterAddr),
			}
			buf := make([]byte, link.FramedLength(len(segment)))
			link.EncodeFrame(header, segment, buf)
			if _, err := conn.Write(buf); err != nil {
				return err
			}
		}
		return nil
	}

	reader := link.NewReader()
	reassembler := transport.NewReader()
	recv := func(ctx context.Context) ([]byte, error) {
		for {
			frame, err := reader.Read(ctx, conn)
			if err != nil {
				return nil, err
			}
			result := reassembler.Push(frame.Payload, transport.BroadcastNone)
			if result.Err != nil {
				log.WithError(result.Err).Warn("transport reassembly error")
				continue
			}
			if result.Fragment != nil {
				return result.Fragment, nil
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	delay, err := task.Run(ctx, send, recv)
	if err != nil {
		if err == io.EOF {
			log.Fatal("outstation closed the connection before responding")
		}
		log.WithError(err).Fatal("restart task failed")
	}

	log.WithField("delay", delay).Info("restart accepted")
}
