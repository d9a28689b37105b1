package middleware

import (
	"errors"
	"log/slog"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pengaduan/pengaduan-backend/internal/actor"
	"github.com/pengaduan/pengaduan-backend/internal/config"
	"github.com/pengaduan/pengaduan-backend/internal/dto"
	"github.com/pengaduan/pengaduan-backend/internal/models"
)

// JWTProtected verifies the bearer token issued by the identity service.
func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{Key: []byte(cfg.JWTSecret)},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Unauthorized: invalid or expired token",
			})
		},
	})
}

// LoadActor turns the verified token into an actor.Actor. Role and activity come
// from the users table, never from the token claims.
func LoadActor(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := c.Locals("user").(*jwt.Token)
		if !ok || token == nil {
			return unauthorized(c, "Unauthorized")
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return unauthorized(c, "Invalid claims")
		}
		sub, _ := claims["sub"].(string)
		userID, err := uuid.Parse(sub)
		if err != nil {
			return unauthorized(c, "Invalid subject")
		}

		var user models.User
		if err := db.WithContext(c.UserContext()).First(&user, "id = ?", userID).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				slog.Error("failed to load actor", "actor_id", userID.String(), "error", err)
				return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
					Error: true, Message: "Internal server error",
				})
			}
			return unauthorized(c, "Unknown user")
		}
		if !user.IsActive || !user.Role.Valid() {
			return unauthorized(c, "Account is not active")
		}

		actor.Set(c, user.Actor())
		return c.Next()
	}
}

// RequireStaff lets admins and superadmins through. Finer checks happen per report.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		a, err := actor.FromCtx(c)
		if err != nil {
			return unauthorized(c, "Unauthorized")
		}
		if !a.IsStaff() {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: "Admin access required",
			})
		}
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: true, Message: msg})
}
