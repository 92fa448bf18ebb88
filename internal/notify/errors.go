package notify

import "errors"

var (
	errNoActor   = errors.New("dispatch intent has no actor")
	errNoCompany = errors.New("actor has no company and is not an admin")
)
