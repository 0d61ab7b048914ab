// Command authgate はDiscordログインによるセッション認証ゲートウェイ。
package main

import (
	"fmt"
	"os"

	"github.com/rickspace/authgate/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "authgate: %v\n", err)
		os.Exit(1)
	}
}
