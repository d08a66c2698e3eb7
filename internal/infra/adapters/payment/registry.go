// File: internal/infra/adapters/payment/registry.go
package payment

import (
	"github.com/kamol666/finish/internal/config"
	"github.com/kamol666/finish/internal/domain/model"
	"github.com/kamol666/finish/internal/domain/ports/adapter"
)

// BuildRegistry wires one CardProvider per supported provider. Dev mode
// swaps every provider for a noop so flows run without credentials.
func BuildRegistry(cfg config.ProvidersConfig, dev bool) map[model.Provider]adapter.CardProvider {
	if dev {
		return map[model.Provider]adapter.CardProvider{
			model.ProviderPayme:  NewNoopProvider(model.ProviderPayme),
			model.ProviderUzcard: NewNoopProvider(model.ProviderUzcard),
			model.ProviderClick:  NewNoopProvider(model.ProviderClick),
		}
	}
	return map[model.Provider]adapter.CardProvider{
		model.ProviderPayme:  NewPaymeProvider(cfg.Payme),
		model.ProviderUzcard: NewUzcardProvider(cfg.Uzcard),
		model.ProviderClick:  NewClickProvider(cfg.Click),
	}
}
