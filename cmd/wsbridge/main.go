// Copyright 2020 The NATS Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command wsbridge is a minimal echo server exercising the ws package end
// to end: it hijacks an incoming HTTP/1.1 Upgrade request the way the
// teacher's wsUpgrade does, hands the raw connection to ws.Accept, and
// echoes every text/binary message it receives back to the sender.
package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/nats-io/nats.go"
	"github.com/pion/logging"

	"github.com/mdbarr/gowebsocket/ws"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	natsURL := flag.String("nats", "", "optional NATS URL to relay messages onto")
	flag.Parse()

	cfg := ws.DefaultConfig()
	cfg.SupportedSubprotocols = []string{"echo.v1"}
	cfg.LoggerFactory = logging.NewDefaultLoggerFactory()

	if *natsURL != "" {
		nc, err := nats.Connect(*natsURL)
		if err != nil {
			log.Fatalf("connecting to NATS: %v", err)
		}
		defer nc.Close()
		cfg.Relay = &ws.NatsRelay{NC: nc, SubjectPrefix: "ws.audit"}
	}

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "request method must be GET", http.StatusMethodNotAllowed)
			return
		}

		hj, ok := w.(http.Hijacker)
		if !ok {
			http.Error(w, "connection does not support hijacking", http.StatusInternalServerError)
			return
		}
		conn, brw, err := hj.Hijack()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		var residual []byte
		if n := brw.Reader.Buffered(); n > 0 {
			residual = make([]byte, n)
			_, _ = brw.Reader.Read(residual)
		}

		req := &ws.Request{
			Header:     r.Header,
			Host:       r.Host,
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.Header.Get("User-Agent"),
			Cookies:    r.Cookies(),
		}

		result, err := ws.Accept(req, conn, residual, cfg)
		if err != nil {
			log.Printf("handshake rejected from %s: %v", r.RemoteAddr, err)
			conn.Close()
			return
		}

		c := result.Conn
		c.Listen(ws.Handlers{
			OnText: func(s string) {
				_ = c.Send(s)
			},
			OnBinary: func(b []byte) {
				_ = c.Send(append([]byte(nil), b...))
			},
			OnConnectionReset: func() {
				log.Printf("%s: connection reset", c.ID())
			},
			OnError: func(err error) {
				log.Printf("%s: error: %v", c.ID(), err)
			},
			OnEnd: func(ev ws.CloseEvent) {
				log.Printf("%s: closed", c.ID())
			},
		})
	})

	log.Printf("wsbridge listening on %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, nil))
}
