// Command ratelimitd runs the standalone rate-limiting daemon (spec §6): the
// native protocol listener plus its JSON/HTTP, gRPC and MessagePack
// collaborator transports, fronted by a cobra CLI in the style of wso2-api-platform's
// cli/src command tree.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
