// Package autoload initializes the global logger from the LOG_*
// environment on import.
//
//	import _ "github.com/scriptautomation123/dexter/pkg/logger/autoload"
package autoload

import (
	configx "github.com/scriptautomation123/dexter/pkg/config"
	logx "github.com/scriptautomation123/dexter/pkg/logger"
)

func init() {
	logx.Init(*configx.MustNew[logx.Config]("LOG"))
}
