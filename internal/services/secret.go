package services

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/imulab-x/client-service/internal/utils"
)

// 明文客户端密钥长度（字符集 [A-Za-z0-9]）。
const clientSecretLength = 32

// PasswordEncoder 对客户端密钥做单向编码，并可校验明文。
type PasswordEncoder interface {
	Encode(plain string) ([]byte, error)
	Matches(encoded []byte, plain string) bool
}

// BcryptEncoder 使用 bcrypt 编码密钥。
type BcryptEncoder struct {
	cost int
}

func NewBcryptEncoder(cost int) *BcryptEncoder {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptEncoder{cost: cost}
}

func (e *BcryptEncoder) Encode(plain string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plain), e.cost)
}

func (e *BcryptEncoder) Matches(encoded []byte, plain string) bool {
	if len(encoded) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(encoded, []byte(plain)) == nil
}

func generateSecret() (string, error) {
	return utils.RandAlphaNumeric(clientSecretLength)
}
