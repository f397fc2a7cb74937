package llm

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// DecodeConfig 将工厂收到的配置 map 解码到 out，只覆盖 map 中出现的键。
// 支持 "30s" 形式的时长与弱类型数字。
func DecodeConfig(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("decode provider config: %w", err)
	}
	return nil
}
