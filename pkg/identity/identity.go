package identity

import (
	"fmt"
	"os"

	"github.com/GauravPawar101/Validate-me/pkg/file"
	"github.com/GauravPawar101/Validate-me/pkg/signer"
	"go.uber.org/atomic"
)

// Identity is the persisted part of a validator's identity.
type Identity struct {
	ValidatorID string `json:"validator_id,omitempty"`
	PublicKey   string `json:"public_key,omitempty"`
}

// ValidatorIdentityInterface defines the key material and hub-assigned id of a validator.
type ValidatorIdentityInterface interface {
	LoadIdentity() error
	SaveValidatorID(validatorID string) error
	GetValidatorID() string
	PublicKey() signer.PublicKey
	Sign(msg []byte) (signer.Signature, error)
}

// ValidatorIdentity holds the signing key and the id assigned by the hub.
// The id is read by the heartbeat loop while the receive loop may update it.
type ValidatorIdentity struct {
	IdentityFile string

	privateKey  signer.PrivateKey
	publicKey   signer.PublicKey
	validatorID *atomic.String
	fileOps     file.FileOperations
}

// NewValidatorIdentity creates an identity for privateKey. An empty
// identityFile keeps the assigned id in memory only.
func NewValidatorIdentity(privateKey signer.PrivateKey, identityFile string, fileOps file.FileOperations) (*ValidatorIdentity, error) {
	pub, err := privateKey.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	return &ValidatorIdentity{
		IdentityFile: identityFile,
		privateKey:   privateKey,
		publicKey:    pub,
		validatorID:  atomic.NewString(""),
		fileOps:      fileOps,
	}, nil
}

// LoadIdentity restores a previously assigned id. An id saved for a different key is ignored.
func (v *ValidatorIdentity) LoadIdentity() error {
	if v.IdentityFile == "" {
		return nil
	}

	var stored Identity
	if err := v.fileOps.ReadJsonFile(v.IdentityFile, &stored); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if stored.PublicKey == v.publicKey.String() {
		v.validatorID.Store(stored.ValidatorID)
	}
	return nil
}

// SaveValidatorID records the id assigned by the hub.
func (v *ValidatorIdentity) SaveValidatorID(validatorID string) error {
	v.validatorID.Store(validatorID)
	if v.IdentityFile == "" {
		return nil
	}
	return v.fileOps.WriteJsonFile(v.IdentityFile, Identity{
		ValidatorID: validatorID,
		PublicKey:   v.publicKey.String(),
	})
}

// GetValidatorID returns the hub-assigned id, or "" before signup completes.
func (v *ValidatorIdentity) GetValidatorID() string {
	return v.validatorID.Load()
}

// PublicKey returns the validator's public key.
func (v *ValidatorIdentity) PublicKey() signer.PublicKey {
	return v.publicKey
}

// Sign signs msg with the validator's private key.
func (v *ValidatorIdentity) Sign(msg []byte) (signer.Signature, error) {
	return signer.Sign(v.privateKey, msg)
}
