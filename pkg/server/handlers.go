package server

import (
	"github.com/studyloop/recall/internal"
)

var log = internal.GetLogger()
