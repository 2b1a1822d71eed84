package core

import (
	"github.com/git-pkgs/pins/client"
)

// Type aliases so table implementations only import core.
type (
	Client     = client.Client
	URLBuilder = client.URLBuilder
	BaseURLs   = client.BaseURLs
	HTTPError  = client.HTTPError
)

var (
	DefaultClient = client.DefaultClient
	BuildURLs     = client.BuildURLs
)
