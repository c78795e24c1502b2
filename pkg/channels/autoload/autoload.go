// Package autoload registers every built-in front end.
package autoload

import (
	_ "taskmate/pkg/channels/telegram"
	_ "taskmate/pkg/channels/terminal"
	_ "taskmate/pkg/channels/web"
)
