package agents

import (
	"stock-analyzer/services"
)

// Type aliases for service interfaces - defined in services package
// These aliases allow agents to reference interfaces without importing concrete implementations
type LLMService = services.LLMService
type Filing = services.Filing

var _ FilingSource = (services.EDGARServiceInterface)(nil)
var _ PeerSource = (services.FinnhubServiceInterface)(nil)
var _ PeerProfileSource = (services.FMPServiceInterface)(nil)
