package webserver

import (
	"crypto/subtle"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type Auth struct {
	jwtSecret    []byte
	serviceToken string
}

func NewAuth(secret []byte, serviceToken string) Auth {
	return Auth{jwtSecret: secret, serviceToken: serviceToken}
}

// Token exchanges the command layer's service token for a member-scoped JWT.
// The command layer has already authenticated the Discord user; this endpoint
// only scopes its calls to that member.
func (a Auth) Token(c *gin.Context) {
	var req struct {
		MemberID string `json:"memberId" binding:"required,min=1,max=64"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}

	h := c.GetHeader("Authorization")
	token := strings.TrimPrefix(h, "Bearer ")
	if a.serviceToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(a.serviceToken)) != 1 {
		log.Printf("Rejected token exchange from IP %s", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"err": "bad service token"})
		return
	}

	memberJWT, err := issueJWT(req.MemberID, a.jwtSecret)
	if err != nil {
		log.Printf("Failed to issue JWT for %s: %v", req.MemberID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": memberJWT})
}

func issueJWT(memberID string, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"member": memberID,
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	return token.SignedString(secret)
}
