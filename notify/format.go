package notify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/rankwatch/rank"
	"github.com/hazyhaar/rankwatch/trend"
)

// topLines is how many leading entries the report shows in full.
const topLines = 10

// maxMoveLines caps each movement section so a volatile day does not
// produce a scroll-length message.
const maxMoveLines = 5

// FormatReport renders the daily message in Slack mrkdwn.
func FormatReport(snap *rank.Snapshot, report *trend.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "*랭킹 리포트 %s* (%d개, %s)\n",
		snap.Date.Format("2006-01-02"), snap.Count(), strategyLabel(snap.Strategy))

	n := topLines
	if n > len(snap.Entries) {
		n = len(snap.Entries)
	}
	for _, e := range snap.Entries[:n] {
		fmt.Fprintf(&b, "%d. %s%s\n", e.Rank, entryLink(e), priceSuffix(e))
	}

	if report == nil {
		return b.String()
	}

	switch {
	case report.FirstRun:
		b.WriteString("\n첫 수집입니다. 내일부터 변동을 비교합니다.\n")
	case !report.Interesting():
		b.WriteString("\n전일 대비 큰 변동 없음.\n")
	default:
		if report.GapDays > 0 {
			fmt.Fprintf(&b, "\n_%d일 전 스냅샷과 비교_\n", report.GapDays)
		}
		writeMoves(&b, ":chart_with_upwards_trend: 급상승", report.Risers)
		writeMoves(&b, ":chart_with_downwards_trend: 급하락", report.Fallers)
		writeEntries(&b, ":new: 신규 진입", report.NewEntrants)
		writeEntries(&b, ":wave: 이탈", report.Dropouts)
		if report.ChurnCount > 0 {
			fmt.Fprintf(&b, "\n교체 %d건\n", report.ChurnCount)
		}
	}
	return b.String()
}

// FormatFailure renders the message for a run that produced no snapshot.
// lastGood is the date of the latest successful run, empty when there is
// none yet.
func FormatFailure(date string, err error, lastGood string) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":rotating_light: *%s 랭킹 수집 실패*\n%v\n", date, err)
	if lastGood != "" {
		fmt.Fprintf(&b, "마지막 성공 수집: %s. 해당 스냅샷이 최신 상태로 유지됩니다.", lastGood)
	} else {
		b.WriteString("성공한 수집 기록이 아직 없습니다.")
	}
	return b.String()
}

func writeMoves(b *strings.Builder, title string, moves []trend.Move) {
	if len(moves) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", title)
	for i, m := range moves {
		if i == maxMoveLines {
			fmt.Fprintf(b, "외 %d건\n", len(moves)-maxMoveLines)
			break
		}
		fmt.Fprintf(b, "%s: %d -> %d (%+d)\n", m.Entry.DisplayName, m.PreviousRank, m.CurrentRank, m.Delta)
	}
}

func writeEntries(b *strings.Builder, title string, entries []rank.Entry) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", title)
	for i, e := range entries {
		if i == maxMoveLines {
			fmt.Fprintf(b, "외 %d건\n", len(entries)-maxMoveLines)
			break
		}
		fmt.Fprintf(b, "%d위 %s\n", e.Rank, e.DisplayName)
	}
}

func strategyLabel(s rank.Strategy) string {
	switch s {
	case rank.StrategyProbe:
		return "프로브"
	case rank.StrategyRender:
		return "렌더링"
	default:
		return string(s)
	}
}

// entryLink renders a Slack link when the entry has a URL.
func entryLink(e rank.Entry) string {
	name := e.DisplayName
	if name == "" {
		name = e.RawName
	}
	if e.URL == "" {
		return name
	}
	return fmt.Sprintf("<%s|%s>", e.URL, name)
}

func priceSuffix(e rank.Entry) string {
	if e.SalePrice <= 0 {
		return ""
	}
	s := " · " + formatKRW(e.SalePrice) + "원"
	if e.DiscountPct > 0 {
		s += fmt.Sprintf(" (%d%% 할인)", e.DiscountPct)
	}
	return s
}

// formatKRW inserts thousands separators.
func formatKRW(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
