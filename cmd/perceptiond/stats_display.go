package main

import (
	"context"
	"fmt"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/perception/sharedbuffer"
)

// reportStats periodically prints statistics from all pipeline stages
func reportStats(ctx context.Context, interval time.Duration, p *pipeline) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			printLiveStats(p)
		}
	}
}

// printLiveStats prints current statistics from all stages
func printLiveStats(p *pipeline) {
	cs := p.capturer.Stats()
	captures, failures := p.cam.Stats()

	fmt.Println()
	fmt.Println("╭─────────────────────────────────────────────────────────────────╮")
	fmt.Printf("│ Perception Statistics (%s, uptime: %v)\n", p.cfg.InstanceID, time.Since(p.started).Round(time.Second))
	fmt.Println("├─────────────────────────────────────────────────────────────────┤")

	fmt.Printf("│ Camera (%s):\n", p.cam.Vendor())
	fmt.Printf("│   Captures:           %6d\n", captures)
	fmt.Printf("│   SDK Failures:       %6d\n", failures)

	fmt.Println("│")
	fmt.Println("│ Capture:")
	fmt.Printf("│   Frames Captured:    %6d frames\n", cs.FramesCaptured)
	fmt.Printf("│   Failures:           %6d (transient %d, device %d, config %d)\n",
		cs.Failures, cs.FailuresTransient, cs.FailuresDevice, cs.FailuresConfig)
	fmt.Printf("│   Target FPS:         %6.2f fps\n", cs.FPSTarget)
	fmt.Printf("│   Real FPS:           %6.2f fps\n", cs.FPSReal)
	fmt.Printf("│   Latency:            %6d ms\n", cs.LatencyMS)

	processed, skipped, failed := p.pre.Stats()
	fmt.Println("│")
	fmt.Println("│ Preprocess:")
	fmt.Printf("│   Tensors Written:    %6d\n", processed)
	fmt.Printf("│   Idle Ticks:         %6d\n", skipped)
	fmt.Printf("│   Failures:           %6d\n", failed)

	inferred, latency := p.infer.Stats()
	fmt.Println("│")
	fmt.Println("│ Inference (stub):")
	fmt.Printf("│   Tensors Consumed:   %6d\n", inferred)
	fmt.Printf("│   Capture→Inference:  %6.1f ms avg\n", float64(latency.Microseconds())/1000)
	if means, ok := p.infer.LastMeans(); ok {
		fmt.Printf("│   Channel Means:      R=%.3f G=%.3f B=%.3f\n", means[0], means[1], means[2])
	}

	if p.saver != nil {
		saved, failed := p.saver.Stats()
		fmt.Println("│")
		fmt.Println("│ Snapshots:")
		fmt.Printf("│   Saved:              %6d\n", saved)
		fmt.Printf("│   Failed:             %6d\n", failed)
	}

	if p.emitter != nil {
		published, errs := p.emitter.Stats()
		fmt.Println("│")
		fmt.Println("│ Telemetry:")
		fmt.Printf("│   Published:          %6d (errors %d)\n", published, errs)
	}

	fmt.Println("│")
	printPool(p.images.Stats())
	printPool(p.tensors.Stats())

	fmt.Println("╰─────────────────────────────────────────────────────────────────╯")
}

// printPool prints one pool's directory: slot freshness with held slots marked *
func printPool(st sharedbuffer.Stats) {
	fmt.Printf("│ Pool %-8s commits %d, aborts %d, reads %d, held %d/%d\n",
		st.Name+":", st.WriteCommits, st.WriteAborts, st.ReadAcquires, st.Occupied, len(st.Slots))
	fmt.Print("│   freshness:")
	for _, slot := range st.Slots {
		mark := " "
		if slot.Occupied {
			mark = "*"
		}
		fmt.Printf(" %d%s", slot.Freshness, mark)
	}
	fmt.Println()
}
