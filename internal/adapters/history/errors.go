package history

import "errors"

var errOffline = errors.New("history recorder marked offline")
