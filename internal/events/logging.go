package events

import "calc-cli/internal/logger"

// log 复用全局 logger，标记事件组件。
var log = logger.Named("events")
