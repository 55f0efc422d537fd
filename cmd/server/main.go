package main

import (
	"github.com/Dango-F/medical-chat/internal/server"
	"github.com/Dango-F/medical-chat/internal/util"
	"github.com/Dango-F/medical-chat/pkg/logger"
	"github.com/Dango-F/medical-chat/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
