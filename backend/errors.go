package backend

import "errors"

// errShutdownSurfacesRemain is returned by Shutdown when surfaces are
// still registered; surfaces are owned by the window system and must be
// destroyed before the session shuts down.
var errShutdownSurfacesRemain = errors.New("backend: shutdown called with surfaces still registered")
