package pdu

import (
	"fmt"
	"time"
)

const dlrDateLayout = "0601021504"

// BuildDLRText formats a delivery receipt body, bit-exact with the one
// space between fields that ESMEs parse by splitting on whitespace.
func BuildDLRText(messageID, stat, errCode string, submitDate, doneDate time.Time) string {
	return fmt.Sprintf(
		"id:%s sub:001 dlvrd:000 submit date:%s done date:%s stat:%s err:%s text:",
		messageID,
		submitDate.Format(dlrDateLayout),
		doneDate.Format(dlrDateLayout),
		stat,
		errCode,
	)
}
