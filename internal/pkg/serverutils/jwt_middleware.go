package serverutils

import (
	"errors"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const userIDKey = "user_id"

func JwtMiddleware(ctx *fiber.Ctx) error {
	authHeader := ctx.Get("Authorization")
	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		// Browsers cannot set headers on websocket upgrades.
		if tok := ctx.Query("token"); tok != "" {
			authHeader = "Bearer " + tok
		} else {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
		}
	}
	tokenStr := authHeader[7:]

	userID, err := ParseUserID(tokenStr, []byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, err.Error()))
	}

	ctx.Locals(userIDKey, userID)
	return ctx.Next()
}

// ParseUserID validates an HS256 token and returns its user_id claim.
func ParseUserID(tokenStr string, secret []byte) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}
	switch v := claims[userIDKey].(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case float64:
		return fmt.Sprintf("%.0f", v), nil
	}
	return "", errors.New("invalid claims")
}

// UserID returns the authenticated user id set by JwtMiddleware.
func UserID(ctx *fiber.Ctx) string {
	id, _ := ctx.Locals(userIDKey).(string)
	return id
}
