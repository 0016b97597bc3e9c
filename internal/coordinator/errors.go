package coordinator

import "errors"

// ErrNoCapacity is returned by Assign when no eligible world can take
// another player. The connection is closed with this error as the reason.
var ErrNoCapacity = errors.New("no world capacity available")
