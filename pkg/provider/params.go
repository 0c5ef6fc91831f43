package provider

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// DecodeParams decodes vendor settings from Config.Params into out, a
// pointer to a struct with mapstructure tags. Unknown keys are an error so
// that misspelled settings surface at construction.
func DecodeParams(params map[string]any, out any) error {
	if len(params) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("failed to create params decoder: %w", err)
	}
	if err := dec.Decode(params); err != nil {
		return fmt.Errorf("failed to decode provider params: %w", err)
	}
	return nil
}
