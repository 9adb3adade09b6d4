package token

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 14 * 24 * time.Hour
)

// jti用のIDを作る約束
type IDGenerator interface {
	NewID() string
}

// jtiにUUIDを使う
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// 発行したトークンのペア
type Pair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// IssuerはaccessとrefreshのCodecを使ってトークンを発行する。
type Issuer struct {
	access     *Codec
	refresh    *Codec
	accessTTL  time.Duration
	refreshTTL time.Duration
	ids        IDGenerator
}

func NewIssuer(access, refresh *Codec, accessTTL, refreshTTL time.Duration, ids IDGenerator) (*Issuer, error) {
	if access == nil || refresh == nil {
		return nil, fmt.Errorf("issuer: codecs are required")
	}
	if access.Type() != TypeAccess || refresh.Type() != TypeRefresh {
		return nil, fmt.Errorf("issuer: codec types mismatch (%s, %s)", access.Type(), refresh.Type())
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	if ids == nil {
		ids = UUIDGenerator{}
	}
	if refreshTTL <= accessTTL {
		return nil, fmt.Errorf("issuer: refresh ttl %s must be longer than access ttl %s", refreshTTL, accessTTL)
	}

	return &Issuer{
		access:     access,
		refresh:    refresh,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		ids:        ids,
	}, nil
}

func (i *Issuer) AccessTTL() time.Duration  { return i.accessTTL }
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// Issueは同じsubject/authoritiesで期限だけ違うaccess/refreshを発行する。
func (i *Issuer) Issue(subject string, authorities []string, now time.Time) (Pair, error) {
	//JWTの時刻は秒単位なので揃える
	now = now.Truncate(time.Second)

	access, accessExp, err := i.IssueAccess(subject, authorities, now)
	if err != nil {
		return Pair{}, err
	}

	refreshExp := now.Add(i.refreshTTL)
	refresh, err := i.refresh.Encode(subject, authorities, now, i.refreshTTL, i.ids.NewID())
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// IssueAccessはaccessトークンだけを発行する（refresh時）。
func (i *Issuer) IssueAccess(subject string, authorities []string, now time.Time) (string, time.Time, error) {
	now = now.Truncate(time.Second)
	access, err := i.access.Encode(subject, authorities, now, i.accessTTL, i.ids.NewID())
	if err != nil {
		return "", time.Time{}, err
	}
	return access, now.Add(i.accessTTL), nil
}

// ReissueAccessはprevExpiryより必ず後に切れるaccessトークンを発行する。
// 秒に切り捨てるので、1秒未満のrefreshでは発行時刻を1秒先へずらす
func (i *Issuer) ReissueAccess(subject string, authorities []string, now, prevExpiry time.Time) (string, time.Time, error) {
	floor := prevExpiry.Truncate(time.Second).Add(-i.accessTTL).Add(time.Second)
	if now.Before(floor) {
		now = floor
	}
	return i.IssueAccess(subject, authorities, now)
}
