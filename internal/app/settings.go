package app

import (
	"github.com/clambin/melcloud-monitor/internal/scheduler"
	"github.com/spf13/viper"
)

var _ scheduler.Settings = viperSettings{}

// viperSettings adapts viper to the guard's settings reader.
type viperSettings struct {
	viper *viper.Viper
}

func (s viperSettings) Get(key string) (string, bool) {
	value := s.viper.GetString(key)
	return value, value != ""
}
