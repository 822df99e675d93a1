// Package loader registers features and mounts their routes on the fiber app.
//
// Each feature implements Feature:
//
//	type Feature interface {
//	    Name() string
//	    IsEnabled() bool
//	    Load(app fiber.Router) error
//	}
//
// Manager.Register records a feature; Manager.LoadAll loads the enabled ones
// in registration order.
package loader
