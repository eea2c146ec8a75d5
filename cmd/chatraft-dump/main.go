/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
chatraft-dump inspects a replica's durable log directly from disk,
without going through a running node: point it at a node's data
directory and it replays every entry in the log (the store does not
record which entries committed) through a fresh state machine and
prints the resulting entry count and usernames.

It can also run in remote mode, checking that a set of hosts' client
APIs are actually reachable before an operator points a client at them.

Usage:

	chatraft-dump -data-dir ./data/n1                  # local mode
	chatraft-dump -hosts node1,node2:9191 -port 9191   # remote reachability check
*/
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/firefly-oss/chatraft/internal/clientapi"
	"github.com/firefly-oss/chatraft/internal/statemachine"
	"github.com/firefly-oss/chatraft/internal/store"
)

var (
	dataDir = flag.String("data-dir", "", "path to a node's store directory (local mode)")
	hosts   = flag.String("hosts", "", "comma-separated client API hosts to check (remote mode)")
	port    = flag.String("port", "9191", "default port for -hosts entries that omit one")
	jsonOut = flag.Bool("json", false, "emit JSON instead of a human-readable report")
)

func main() {
	flag.Parse()

	switch {
	case isLocalMode():
		if err := dumpLocal(*dataDir, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "chatraft-dump: %v\n", err)
			os.Exit(1)
		}
	case isRemoteMode():
		checkRemote(parseHosts(*hosts, *port))
	default:
		fmt.Fprintln(os.Stderr, "chatraft-dump: one of -data-dir or -hosts is required")
		os.Exit(1)
	}
}

func isLocalMode() bool  { return *dataDir != "" }
func isRemoteMode() bool { return *hosts != "" }

func dumpLocal(dir string, asJSON bool) error {
	st, err := store.Open(dir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	machine := statemachine.NewMachine()
	last := st.LastIndex()
	for i := uint64(1); i <= last; i++ {
		entry, ok, err := st.Entry(i)
		if err != nil {
			return fmt.Errorf("read entry %d: %w", i, err)
		}
		if !ok {
			return fmt.Errorf("read entry %d: not found", i)
		}
		cmd, err := statemachine.Decode(entry.Command)
		if err != nil {
			return fmt.Errorf("decode entry %d: %w", i, err)
		}
		machine.Apply(cmd)
	}

	var names []string
	machine.View(func(s *statemachine.State) {
		names = s.AllUsernames()
	})

	if asJSON {
		fmt.Printf("{\"entries\":%d,\"usernames\":%d}\n", last, len(names))
		return nil
	}

	size, err := logFileSize(dir)
	if err == nil {
		fmt.Printf("log size:    %s\n", formatFileSize(size))
	}
	fmt.Printf("entries:     %d\n", last)
	fmt.Printf("usernames:   %d\n", len(names))
	for _, n := range names {
		fmt.Printf("  - %s\n", n)
	}
	return nil
}

func logFileSize(dir string) (int64, error) {
	fi, err := os.Stat(dir + "/log.bin")
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func checkRemote(addrs []string) {
	for _, addr := range addrs {
		c := clientapi.NewClient(addr, 2*time.Second)
		err := c.Call("GetUsernameByID", struct {
			UserID uint32 `json:"user_id"`
		}{UserID: 0}, nil)
		switch {
		case err == nil:
			fmt.Printf("%s: reachable\n", addr)
		case isConnectionError(err):
			fmt.Printf("%s: unreachable (%v)\n", addr, err)
		default:
			// Any application-level error (e.g. user 0 not found) still
			// proves the client API answered.
			fmt.Printf("%s: reachable\n", addr)
		}
	}
}

// parseHosts splits a comma-separated host list, appending defaultPort
// to any entry that doesn't already carry one.
func parseHosts(hostStr, defaultPort string) []string {
	out := []string{}
	for _, h := range strings.Split(hostStr, ",") {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if !strings.Contains(h, ":") {
			h = h + ":" + defaultPort
		}
		out = append(out, h)
	}
	return out
}

// isConnectionError reports whether err looks like a transport-level
// failure (refused, reset, timed out) rather than an application error
// returned by a live node.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{"connection refused", "connection reset", "broken pipe", "eof", "timeout", "i/o timeout"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

// formatFileSize renders byte counts the way an operator reads them.
func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d bytes", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	units := []string{"KB", "MB", "GB", "TB"}
	return fmt.Sprintf("%.2f %s", float64(size)/float64(div), units[exp])
}
