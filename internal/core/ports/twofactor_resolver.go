package ports

import "github.com/vulpemventures/green-cosigner/internal/core/domain"

// TwoFactorResolver is the abstraction for whoever is in charge of picking a
// 2FA method and providing the related code, being it a human at a terminal
// or a scripted source.
type TwoFactorResolver interface {
	// ChooseMethod returns one among the given enabled methods.
	ChooseMethod(enabled []domain.TwoFactorMethod) (domain.TwoFactorMethod, error)
	// Code returns the code received via the given method.
	Code(method domain.TwoFactorMethod) (string, error)
}
