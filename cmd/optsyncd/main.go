package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/optsync/internal/app"
	"github.com/matheus3301/optsync/internal/session"
	"go.uber.org/fx"
)

func main() {
	namespaceFlag := flag.String("namespace", "", "namespace name (overrides config default)")
	flag.Parse()

	namespace := session.Resolve(*namespaceFlag)
	if err := session.ValidateName(namespace); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	daemon := fx.New(
		app.Module(app.Params{Namespace: namespace}),
	)

	daemon.Run()
}
