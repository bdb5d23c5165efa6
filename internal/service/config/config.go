package config

import settlementConfig "github.com/iurnickita/foodorder/internal/settlement/config"

type Config struct {
	Settlement settlementConfig.Config
}
