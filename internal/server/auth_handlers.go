package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"propertyhub/internal/featureflags"
	"propertyhub/internal/middleware"
	"propertyhub/internal/models"
	"propertyhub/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer   = "propertyhub-api"
	tokenAudience = "propertyhub-client"

	revokedTokenPrefix = "blacklist:"
)

// AdminSummary is the public view of an admin returned by auth endpoints.
type AdminSummary struct {
	ID       uint   `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

func toAdminSummary(a *models.Admin) AdminSummary {
	return AdminSummary{ID: a.ID, FullName: a.FullName, Email: a.Email}
}

// Register handles POST /api/auth/register
// @Summary Admin registration
// @Description Create an admin account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.RegisterAdminInput true "Registration request"
// @Success 201 {object} object{success=bool,message=string,admin=AdminSummary}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	// Registration is anonymous, so percentage rollouts of admin_signup evaluate as off.
	if !s.featureFlags.Enabled(featureflags.AdminSignup, 0) {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("Admin registration is disabled"))
	}

	var req service.RegisterAdminInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	admin, err := s.adminService.Register(c.UserContext(), req)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Admin registered successfully",
		"admin":   toAdminSummary(admin),
	})
}

// Login handles POST /api/auth/login
// @Summary Admin login
// @Description Authenticate an admin and return a JWT
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string} true "Login credentials"
// @Success 200 {object} object{success=bool,message=string,token=string,admin=AdminSummary}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	admin, err := s.adminService.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondServiceError(c, err)
	}

	token, err := s.generateToken(admin)
	if err != nil {
		return respondServiceError(c, models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Login successful",
		"token":   token,
		"admin":   toAdminSummary(admin),
	})
}

// Logout handles POST /api/auth/logout
// @Summary Admin logout
// @Description Revoke the current token until it expires
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,message=string}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	jti, _ := c.Locals("jti").(string)
	exp, _ := c.Locals("tokenExp").(time.Time)

	if jti != "" {
		if s.redis == nil {
			middleware.Logger.WarnContext(c.UserContext(), "logout without redis, token stays valid until expiry")
		} else {
			ttl := time.Until(exp)
			if ttl < time.Second {
				ttl = time.Second
			}
			if err := s.redis.Set(c.UserContext(), revokedTokenPrefix+jti, "1", ttl).Err(); err != nil {
				return respondServiceError(c, models.NewInternalError(err))
			}
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Logout successful",
	})
}

// Me handles GET /api/auth/me
// @Summary Current admin
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{success=bool,admin=AdminSummary}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/me [get]
func (s *Server) Me(c *fiber.Ctx) error {
	admin, err := s.adminService.GetAdmin(c.UserContext(), adminIDFromLocals(c))
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"admin":   toAdminSummary(admin),
	})
}

// AuthRequired returns the middleware that admits only authenticated admins.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Unauthorized"))
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if tokenString == "" {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Unauthorized"))
		}

		claims, err := s.parseToken(tokenString)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token"))
		}

		if role, _ := claims["role"].(string); role != models.RoleAdmin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Admin access only"))
		}

		sub, _ := claims["sub"].(string)
		adminID, err := strconv.ParseUint(sub, 10, 32)
		if err != nil || adminID == 0 {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid token"))
		}

		jti, _ := claims["jti"].(string)
		if jti != "" && s.redis != nil {
			revoked, rerr := s.redis.Exists(c.UserContext(), revokedTokenPrefix+jti).Result()
			if rerr == nil && revoked > 0 {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		if _, err := s.adminService.GetAdmin(c.UserContext(), uint(adminID)); err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Admin not found"))
			}
			return respondServiceError(c, err)
		}

		c.Locals("adminID", uint(adminID))
		c.Locals("jti", jti)
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			c.Locals("tokenExp", exp.Time)
		}
		c.SetUserContext(middleware.WithAdminID(c.UserContext(), uint(adminID)))

		return c.Next()
	}
}

func (s *Server) parseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// generateToken creates a signed admin JWT.
func (s *Server) generateToken(admin *models.Admin) (string, error) {
	if s.config.JWTSecret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}

	ttl := time.Duration(s.config.JWTTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   strconv.FormatUint(uint64(admin.ID), 10),
		"role":  models.RoleAdmin,
		"name":  admin.FullName,
		"email": admin.Email,
		"iss":   tokenIssuer,
		"aud":   tokenAudience,
		"exp":   now.Add(ttl).Unix(),
		"iat":   now.Unix(),
		"nbf":   now.Unix(),
		"jti":   uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}
