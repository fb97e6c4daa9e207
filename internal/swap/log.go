package swap

import "go.uber.org/zap"

func zapSwap(id string) zap.Field { return zap.String("swap_request_id", id) }

func zapUser(uid string) zap.Field { return zap.String("uid", uid) }
