package main

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/ordertrack/internal/app"
)

func main() {
	fx.New(app.API).Run()
}
