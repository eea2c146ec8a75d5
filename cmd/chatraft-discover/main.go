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
chatraft-discover scans the local network for chatraft nodes advertised
over mDNS and prints what it finds. Useful for assembling a cluster
config file without having to know every node's address in advance.

Usage:

	chatraft-discover                 # discover nodes (5 second timeout)
	chatraft-discover --timeout 10    # custom timeout in seconds
	chatraft-discover --json          # machine-readable output
	chatraft-discover --quiet         # only addresses, for scripting
*/
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/firefly-oss/chatraft/internal/discovery"
)

func main() {
	timeout := flag.Int("timeout", 5, "discovery timeout in seconds")
	jsonOutput := flag.Bool("json", false, "output as JSON")
	quiet := flag.Bool("quiet", false, "only output raft addresses (for scripting)")
	flag.Parse()

	// mdns logs benign IPv6 lookup errors at the standard logger; keep
	// them out of this tool's terminal output.
	log.SetOutput(io.Discard)

	if !*quiet && !*jsonOutput {
		fmt.Printf("Scanning for chatraft nodes (timeout: %ds)...\n\n", *timeout)
	}

	nodes, err := discovery.Discover(time.Duration(*timeout) * time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "discovery failed: %v\n", err)
		os.Exit(1)
	}

	if len(nodes) == 0 {
		if !*quiet && !*jsonOutput {
			fmt.Println("No chatraft nodes found on the network.")
		}
		os.Exit(0)
	}

	switch {
	case *jsonOutput:
		data, _ := json.MarshalIndent(nodes, "", "  ")
		fmt.Println(string(data))
	case *quiet:
		addrs := make([]string, len(nodes))
		for i, n := range nodes {
			addrs[i] = n.RaftAddr
		}
		fmt.Println(strings.Join(addrs, ","))
	default:
		fmt.Printf("Found %d node(s)\n\n", len(nodes))
		for i, n := range nodes {
			fmt.Printf("  [%d] %s\n      raft: %s\n", i+1, n.NodeID, n.RaftAddr)
		}
	}
}
