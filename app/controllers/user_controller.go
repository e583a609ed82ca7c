package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ManuelReschke/Payline/app/models"
	"github.com/ManuelReschke/Payline/app/repository"
	"github.com/ManuelReschke/Payline/internal/pkg/apierror"
	"github.com/ManuelReschke/Payline/internal/pkg/usercontext"
	"github.com/ManuelReschke/Payline/internal/pkg/utils"
)

// UserController serves the profile and admin user listing.
type UserController struct {
	users repository.UserRepository
	log   *zap.Logger
}

func NewUserController(users repository.UserRepository, lg *zap.Logger) *UserController {
	return &UserController{users: users, log: lg}
}

type preferencesView struct {
	Theme              string `json:"theme"`
	Language           string `json:"language"`
	EmailNotifications bool   `json:"emailNotifications"`
}

type profileView struct {
	ID          string           `json:"id"`
	ExternalID  string           `json:"externalId"`
	Email       string           `json:"email"`
	FirstName   string           `json:"firstName"`
	LastName    string           `json:"lastName"`
	ImageURL    string           `json:"imageUrl"`
	Metadata    models.StringMap `json:"metadata,omitempty"`
	Preferences preferencesView  `json:"preferences"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// Pointers distinguish omitted fields from zero values.
type preferencesRequest struct {
	Theme              *string `json:"theme" validate:"omitempty,oneof=system light dark"`
	Language           *string `json:"language" validate:"omitempty,min=2,max=16"`
	EmailNotifications *bool   `json:"emailNotifications"`
}

func newPreferencesView(p *models.UserPreferences) preferencesView {
	if p == nil {
		d := models.DefaultPreferences("")
		p = &d
	}
	return preferencesView{Theme: p.Theme, Language: p.Language, EmailNotifications: p.EmailNotifications}
}

func newProfileView(u *models.User, prefs *models.UserPreferences) profileView {
	return profileView{
		ID:          u.ID,
		ExternalID:  u.ExternalID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		ImageURL:    utils.AvatarURL(u.ImageURL, u.Email),
		Metadata:    u.Metadata,
		Preferences: newPreferencesView(prefs),
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// HandleGetMe returns the caller's profile with preferences.
func (uc *UserController) HandleGetMe(c *fiber.Ctx) error {
	user := usercontext.GetUser(c)
	if user == nil {
		return apierror.NotFound("User not found")
	}
	prefs, err := uc.users.GetPreferences(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	return apierror.OK(c, fiber.StatusOK, newProfileView(user, prefs))
}

// HandleUpdatePreferences applies the provided preference fields.
func (uc *UserController) HandleUpdatePreferences(c *fiber.Ctx) error {
	var req preferencesRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := validateStruct(req); err != nil {
		return err
	}

	user := usercontext.GetUser(c)
	if user == nil {
		return apierror.NotFound("User not found")
	}
	prefs, err := uc.users.GetPreferences(c.UserContext(), user.ID)
	if err != nil {
		return err
	}
	if req.Theme != nil {
		prefs.Theme = *req.Theme
	}
	if req.Language != nil {
		prefs.Language = *req.Language
	}
	if req.EmailNotifications != nil {
		prefs.EmailNotifications = *req.EmailNotifications
	}
	prefs.UserID = user.ID

	if err := uc.users.UpsertPreferences(c.UserContext(), prefs); err != nil {
		return err
	}
	uc.log.Info("user preferences updated",
		zap.String("user_id", user.ID),
		zap.String("theme", prefs.Theme),
		zap.String("language", prefs.Language),
	)
	return apierror.OK(c, fiber.StatusOK, newPreferencesView(prefs))
}

// HandleListUsers lists users for admins, newest first.
func (uc *UserController) HandleListUsers(c *fiber.Ctx) error {
	page, limit, offset := pageParams(c)
	users, err := uc.users.List(c.UserContext(), offset, limit)
	if err != nil {
		return err
	}
	total, err := uc.users.Count(c.UserContext())
	if err != nil {
		return err
	}

	views := make([]profileView, 0, len(users))
	for i := range users {
		v := newProfileView(&users[i], users[i].Preferences)
		v.Metadata = nil
		views = append(views, v)
	}
	return apierror.OK(c, fiber.StatusOK, fiber.Map{
		"users":      views,
		"pagination": newPagination(page, limit, total),
	})
}
