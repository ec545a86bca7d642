package webserver

import (
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stake-plus/govagent/src/data"
	polkadot "github.com/stake-plus/govagent/src/polkadot-go"
)

// Auth implements the sr25519 challenge login for admin addresses.
type Auth struct {
	nonces    data.NonceStore
	jwtSecret []byte
	admins    map[string]bool // hex public keys
	log       *zap.Logger
}

// NewAuth keys admins by public key so an address is accepted under any
// SS58 prefix. Undecodable entries are logged and skipped.
func NewAuth(nonces data.NonceStore, secret []byte, admins []string, log *zap.Logger) Auth {
	a := Auth{nonces: nonces, jwtSecret: secret, admins: make(map[string]bool), log: log}
	for _, addr := range admins {
		pub, err := polkadot.DecodeSS58(addr)
		if err != nil {
			log.Warn("ignoring admin address", zap.String("address", addr), zap.Error(err))
			continue
		}
		a.admins[hex.EncodeToString(pub)] = true
	}
	return a
}

func (a Auth) isAdmin(addr string) bool {
	pub, err := polkadot.DecodeSS58(addr)
	if err != nil {
		return false
	}
	return a.admins[hex.EncodeToString(pub)]
}

func (a Auth) Challenge(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	if !a.isAdmin(req.Address) {
		c.JSON(http.StatusForbidden, gin.H{"err": "address is not an admin"})
		return
	}
	nonce := uuid.NewString()
	if err := a.nonces.SetNonce(c.Request.Context(), req.Address, nonce); err != nil {
		a.log.Error("store nonce", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"err": "could not issue challenge"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

func (a Auth) Verify(c *gin.Context) {
	var req struct {
		Address   string `json:"address"   binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	if !a.isAdmin(req.Address) {
		c.JSON(http.StatusForbidden, gin.H{"err": "address is not an admin"})
		return
	}
	nonce, err := a.nonces.GetAndDelNonce(c.Request.Context(), req.Address)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "challenge expired"})
		return
	}
	if err := verifySignature(req.Address, req.Signature, nonce); err != nil {
		a.log.Info("login rejected", zap.String("address", req.Address), zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"err": "bad signature"})
		return
	}
	token, err := issueJWT(req.Address, a.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// requireAdmin runs after JWTMiddleware and re-checks the allowlist.
func (a Auth) requireAdmin(c *gin.Context) {
	if !a.isAdmin(c.GetString("addr")) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"err": "address is not an admin"})
		return
	}
	c.Next()
}
