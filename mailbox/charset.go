package mailbox

import (
	"github.com/emersion/go-message/charset"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// Chinese providers often label GBK bodies with names the default table
// does not resolve.
func init() {
	for _, name := range []string{"gbk", "x-gbk", "cp936", "gb2312"} {
		charset.RegisterEncoding(name, simplifiedchinese.GBK)
	}
	charset.RegisterEncoding("gb18030", simplifiedchinese.GB18030)
}
