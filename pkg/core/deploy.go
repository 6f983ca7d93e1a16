package core

import (
	"crypto/ed25519"
	"fmt"

	"github.com/tonkeeper/tongo/boc"
)

// DeploymentRequest is the payload a collection owner signs to allow the
// creation of one item.
type DeploymentRequest struct {
	SubwalletID   uint32
	ValidSince    uint32
	ValidTill     uint32
	TokenName     string
	Content       Content
	AuctionConfig AuctionConfig
	Royalty       *Royalty
	// Restrictions are only carried by deploy v2 requests.
	Restrictions *ItemRestrictions
}

func (r DeploymentRequest) unsignedCell(op Op) (*boc.Cell, error) {
	c := boc.NewCell()
	for _, v := range []uint32{r.SubwalletID, r.ValidSince, r.ValidTill} {
		if err := c.WriteUint(uint64(v), 32); err != nil {
			return nil, err
		}
	}
	if err := WriteText(c, r.TokenName); err != nil {
		return nil, err
	}
	content, err := r.Content.ToCell()
	if err != nil {
		return nil, err
	}
	cfg, err := r.AuctionConfig.ToCell()
	if err != nil {
		return nil, err
	}
	if err := c.AddRef(content); err != nil {
		return nil, err
	}
	if err := c.AddRef(cfg); err != nil {
		return nil, err
	}
	var royalty *boc.Cell
	if r.Royalty != nil {
		if royalty, err = r.Royalty.ToCell(); err != nil {
			return nil, err
		}
	}
	if err := writeMaybeRef(c, royalty); err != nil {
		return nil, err
	}
	if op == OpTelemintDeploy {
		return c, nil
	}
	var restrictions *boc.Cell
	if r.Restrictions != nil {
		if restrictions, err = r.Restrictions.ToCell(); err != nil {
			return nil, err
		}
	}
	if err := writeMaybeRef(c, restrictions); err != nil {
		return nil, err
	}
	return c, nil
}

func writeMaybeRef(c, ref *boc.Cell) error {
	if err := c.WriteBit(ref != nil); err != nil {
		return err
	}
	if ref == nil {
		return nil
	}
	return c.AddRef(ref)
}

func readMaybeRef(c *boc.Cell) (*boc.Cell, error) {
	exists, err := c.ReadBit()
	if err != nil || !exists {
		return nil, err
	}
	return c.NextRef()
}

// SignDeployment builds a deploy message body signed with the collection key.
// op selects between OpTelemintDeploy and OpTelemintDeployV2.
func SignDeployment(key ed25519.PrivateKey, op Op, r DeploymentRequest) (*boc.Cell, error) {
	unsigned, err := r.unsignedCell(op)
	if err != nil {
		return nil, err
	}
	hash, err := unsigned.Hash256()
	if err != nil {
		return nil, err
	}
	body, err := OpBody(op)
	if err != nil {
		return nil, err
	}
	if err := body.WriteBytes(ed25519.Sign(key, hash[:])); err != nil {
		return nil, err
	}
	if err := AppendCell(body, unsigned); err != nil {
		return nil, err
	}
	return body, nil
}

type SignedDeployment struct {
	Signature []byte
	// Hash is the representation hash of the signed part of the body.
	Hash    [32]byte
	Request DeploymentRequest
}

func (s SignedDeployment) Verify(key ed25519.PublicKey) bool {
	return len(key) == ed25519.PublicKeySize && ed25519.Verify(key, s.Hash[:], s.Signature)
}

// ReadSignedDeployment parses a deploy body positioned right after its op code.
func ReadSignedDeployment(body *boc.Cell, op Op) (SignedDeployment, error) {
	if body.BitsAvailableForRead() < 512 {
		return SignedDeployment{}, ErrInvalidLength
	}
	sig, err := body.ReadBytes(ed25519.SignatureSize)
	if err != nil {
		return SignedDeployment{}, err
	}
	unsigned, err := CopyRemaining(body)
	if err != nil {
		return SignedDeployment{}, err
	}
	hash, err := unsigned.Hash256()
	if err != nil {
		return SignedDeployment{}, err
	}
	unsigned.ResetCounters()
	req, err := readDeploymentRequest(unsigned, op)
	if err != nil {
		return SignedDeployment{}, fmt.Errorf("%w: %v", ErrInvalidLength, err)
	}
	return SignedDeployment{Signature: sig, Hash: hash, Request: req}, nil
}

func readDeploymentRequest(c *boc.Cell, op Op) (DeploymentRequest, error) {
	var r DeploymentRequest
	fields := []*uint32{&r.SubwalletID, &r.ValidSince, &r.ValidTill}
	for _, f := range fields {
		v, err := c.ReadUint(32)
		if err != nil {
			return DeploymentRequest{}, err
		}
		*f = uint32(v)
	}
	var err error
	if r.TokenName, err = ReadText(c); err != nil {
		return DeploymentRequest{}, err
	}
	content, err := c.NextRef()
	if err != nil {
		return DeploymentRequest{}, err
	}
	r.Content = RawContent(content)
	cfg, err := c.NextRef()
	if err != nil {
		return DeploymentRequest{}, err
	}
	if r.AuctionConfig, err = ParseAuctionConfig(cfg); err != nil {
		return DeploymentRequest{}, err
	}
	royalty, err := readMaybeRef(c)
	if err != nil {
		return DeploymentRequest{}, err
	}
	if royalty != nil {
		raw := RawRoyalty(royalty)
		r.Royalty = &raw
	}
	if op == OpTelemintDeploy {
		return r, nil
	}
	restrictions, err := readMaybeRef(c)
	if err != nil {
		return DeploymentRequest{}, err
	}
	if restrictions != nil {
		parsed, err := ParseItemRestrictions(restrictions)
		if err != nil {
			return DeploymentRequest{}, err
		}
		r.Restrictions = &parsed
	}
	return r, nil
}
