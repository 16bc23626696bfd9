// VAPID鍵ペアを生成して標準出力に書き出すコマンド。
// 出力をそのまま環境変数ファイルまたは設定ファイルに使える。
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/nao1215/subtrack/pkg/webpush"
	"gopkg.in/yaml.v3"
)

func main() {
	format := flag.String("format", "env", "出力形式 (env, yaml, json)")
	flag.Parse()

	keys, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		log.Fatalf("VAPID鍵の生成に失敗: %v", err)
	}

	if err := write(*format, keys); err != nil {
		log.Fatalf("出力に失敗: %v", err)
	}
}

// write は指定形式で鍵ペアを書き出す。
func write(format string, keys webpush.VAPIDKeys) error {
	switch format {
	case "env":
		_, err := fmt.Fprintf(os.Stdout, "VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\n", keys.PublicKey, keys.PrivateKey)
		return err
	case "yaml":
		// config の push セクションにそのまま貼り付けられる形にする
		return yaml.NewEncoder(os.Stdout).Encode(map[string]string{
			"vapid_public_key":  keys.PublicKey,
			"vapid_private_key": keys.PrivateKey,
		})
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(keys)
	default:
		return fmt.Errorf("未対応の出力形式です: %q", format)
	}
}
