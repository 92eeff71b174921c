package session

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// RegisterSessionRoutes mounts the login/registration/logout surface on
// a router. The views only consume session state: everything stateful
// happens in the Gateway and Store.
func RegisterSessionRoutes[T any](app router.Router[T], opts ...ControllerOption) {

	controller := NewController(opts...)

	app.
		Get(controller.Routes.Login,
			controller.LoginShow,
		).
		SetName("sign-in.get")

	app.
		Post(
			controller.Routes.Login,
			controller.LoginPost,
		).
		SetName("sign-in.post")

	app.Get(controller.Routes.Logout, controller.LogOut).SetName("sign-out.get")

	app.Get(controller.Routes.Register, controller.RegistrationShow).
		SetName("register.get")
	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("register.post")
}

type ControllerRoutes struct {
	Login    string
	Logout   string
	Register string
}

type ControllerViews struct {
	Login    string
	Register string
}

type Controller struct {
	Debug        bool
	Logger       Logger
	Gateway      Authenticator
	Store        SessionReader
	Routes       *ControllerRoutes
	Views        *ControllerViews
	RedirectKey  string
	HomeRoute    string
	ErrorHandler router.ErrorHandler
}

type ControllerOption func(*Controller) *Controller

func WithControllerGateway(gw Authenticator) ControllerOption {
	return func(c *Controller) *Controller {
		c.Gateway = gw
		return c
	}
}

func WithControllerStore(store SessionReader) ControllerOption {
	return func(c *Controller) *Controller {
		c.Store = store
		return c
	}
}

// WithControllerConfig takes the login form route, the post-login home
// route, and the rejected-route cookie key from cfg, so a host shares
// one Config between gateway, guard, and controller.
func WithControllerConfig(cfg Config) ControllerOption {
	return func(c *Controller) *Controller {
		if cfg == nil {
			return c
		}
		if route := cfg.GetLoginRoute(); route != "" {
			c.Routes.Login = route
		}
		if route := cfg.GetHomeRoute(); route != "" {
			c.HomeRoute = route
		}
		if key := cfg.GetRejectedRouteKey(); key != "" {
			c.RedirectKey = key
		}
		return c
	}
}

func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) *Controller {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		RedirectKey:  "rejected_route",
		HomeRoute:    "/",
		Routes: &ControllerRoutes{
			Login:    "/login",
			Logout:   "/logout",
			Register: "/register",
		},
		Views: &ControllerViews{
			Login:    "login",
			Register: "register",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Gateway == nil {
		panic("Missing Gateway in session controller...")
	}

	return c
}

func (a *Controller) LoginShow(ctx router.Context) error {
	return ctx.Render(a.Views.Login, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

func (a *Controller) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)
	errors := map[string]string{}

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: ", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.Login, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		a.Logger.Debug("login payload: %s", print.MaybePrettyJSON(payload))
	}

	if err := a.Gateway.Login(ctx.Context(), payload); err != nil {
		errors["authentication"] = FailureMessage(err)
		return ctx.Render(a.Views.Login, router.ViewContext{
			"errors":  errors,
			"payload": payload,
		})
	}

	redirect := a.GetRedirect(ctx, a.HomeRoute)

	return ctx.Redirect(redirect, router.StatusSeeOther)
}

func (a *Controller) LogOut(ctx router.Context) error {
	a.Gateway.Logout()
	return ctx.Redirect(a.HomeRoute, router.StatusTemporaryRedirect)
}

func (a *Controller) RegistrationShow(ctx router.Context) error {
	return ctx.Render(a.Views.Register, router.ViewContext{
		"errors": map[string]string{},
		"record": RegistrationPayload{},
	})
}

func (a *Controller) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationPayload)

	if err := ctx.Bind(payload); err != nil {
		errors := map[string]string{}
		errors["form"] = "Failed to parse form"
		a.Logger.Error("register student parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.Register, router.ViewContext{
			"errors": errors,
			"record": payload,
		})
	}

	if err := a.Gateway.RegisterStudent(ctx.Context(), *payload); err != nil {
		if IsValidationError(err) {
			a.Logger.Error("register student validate payload: ", "error", err)
			return flash.WithError(ctx, router.ViewContext{
				"error_message":  err.Error(),
				"system_message": "Error validating payload",
			}).Render(a.Views.Register, router.ViewContext{
				"record":     payload,
				"validation": FormatValidationErrorToMap(err),
			})
		}

		a.Logger.Error("register student error: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  FailureMessage(err),
			"system_message": "Error registering account",
		}).Render(a.Views.Register, router.ViewContext{
			"record": payload,
			"errors": []string{FailureMessage(err)},
		})
	}

	// Registration never signs the account in; send the student to the
	// login form with the confirmation message.
	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": a.RegistrationMessage(),
	}).Redirect(a.Routes.Login, fiber.StatusSeeOther)
}

// RegistrationMessage returns the server-settled registration message
// or a default when none was recorded.
func (a *Controller) RegistrationMessage() string {
	if a.Store == nil {
		return "Registration complete"
	}

	if msg := a.Store.Snapshot().Message; msg != "" {
		return msg
	}

	return "Registration complete"
}

// SetRedirect remembers the route a visitor was bounced from so a
// successful login can resume there.
func (a *Controller) SetRedirect(ctx router.Context) {
	a.Logger.Info("Setting redirect cookie", "key", a.RedirectKey, "path", ctx.OriginalURL())

	ctx.Cookie(&router.Cookie{
		Name:     a.RedirectKey,
		Value:    ctx.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// GetRedirect consumes the remembered route, falling back to def.
func (a *Controller) GetRedirect(ctx router.Context, def ...string) string {
	r := ctx.Cookies(a.RedirectKey)
	if r == "" {
		if len(def) > 0 {
			return def[0]
		}
		return a.HomeRoute
	}
	a.cookieDel(ctx, a.RedirectKey)
	return r
}

func (a *Controller) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func defaultErrHandler(c router.Context, err error) error {
	return c.Render("errors/500", router.ViewContext{
		"message": err.Error(),
	})
}
