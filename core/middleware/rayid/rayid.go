package rayid

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	// Header is read from the request and echoed on the response.
	Header = "X-Ray-ID"
	// LocalsKey is where the ray id is stored in fiber locals.
	LocalsKey = "ray_id"
)

// New returns a middleware assigning every request a ray id. An id sent by
// the client is kept.
func New() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(Header)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(LocalsKey, id)
		c.Set(Header, id)
		return c.Next()
	}
}
