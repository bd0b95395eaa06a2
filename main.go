package main

import (
	"os"

	"github.com/ataraxie68/pixelscope/pixelbase/appbase"
)

func main() {
	settings := &appbase.AppSettings{
		ConfigPath: os.Getenv("PIXELSCOPE_CONFIG_PATH"),
		Name:       "pixelscope",
		EnvPrefix:  "PIXELSCOPE",
		ConfigName: "pixelscope",
		ConfigType: "env",
	}
	application := appbase.NewApp[Config](&Context{}, settings)
	application.Run()
}
