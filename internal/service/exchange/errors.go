package exchange

import "errors"

// ErrAuthentication 签名/凭证被交易所拒绝，属于致命错误，调用方应终止进程
var ErrAuthentication = errors.New("exchange authentication rejected")

func IsAuthenticationError(err error) bool {
	return errors.Is(err, ErrAuthentication)
}
