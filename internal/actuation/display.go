package actuation

import (
	"strconv"

	"cloudpico-station/internal/types"
)

// Display is a monochrome text/line canvas. Nothing is shown until Flush.
type Display interface {
	Clear()
	DrawText(x, y int, s string)
	DrawRect(x, y, w, h int)
	DrawLine(x0, y0, x1, y1 int)
	Flush() error
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func drawFrame(d Display) {
	d.DrawRect(2, 2, 124, 60)
	d.DrawLine(2, 15, 126, 15)
}

// DrawSensors renders all four metrics with the highlighted one in the header.
func DrawSensors(d Display, r types.Reading, highlighted types.Metric) {
	d.Clear()
	drawFrame(d)
	d.DrawText(4, 5, "-> "+highlighted.String())

	d.DrawText(4, 20, "Temp: ")
	d.DrawText(45, 20, formatFloat(r.TemperatureC, 1)+"C")
	d.DrawText(4, 30, "Umid: ")
	d.DrawText(45, 30, formatFloat(r.HumidityPct, 1)+"%")
	d.DrawText(4, 40, "Pres: ")
	d.DrawText(45, 40, formatFloat(r.PressureKPa(), 1)+"kPa")
	d.DrawText(4, 50, "Alt: ")
	d.DrawText(35, 50, formatFloat(r.AltitudeM, 0)+"m")
}

// DrawNetwork renders the connection screen.
func DrawNetwork(d Display, n types.NetworkStatus) {
	d.Clear()
	drawFrame(d)
	d.DrawText(10, 5, "STATUS CONEXAO")

	if n.Connected {
		d.DrawText(4, 20, "WiFi: CONECTADO")
		d.DrawText(4, 30, "IP:")
		d.DrawText(4, 40, n.Address)
		d.DrawText(4, 50, "Porta: "+strconv.Itoa(n.Port))
		return
	}
	d.DrawText(4, 25, "WiFi: DESCONECT.")
	d.DrawText(4, 40, "Verifique config")
}

// DrawBoot shows the network bring-up message.
func DrawBoot(d Display) error {
	d.Clear()
	d.DrawText(0, 0, "Iniciando Wi-Fi")
	d.DrawText(0, 20, "Aguarde...")
	return d.Flush()
}

// DrawBootResult shows the outcome of network bring-up.
func DrawBootResult(d Display, n types.NetworkStatus) error {
	d.Clear()
	if n.Connected {
		d.DrawText(0, 0, "WiFi => OK")
		d.DrawText(0, 20, n.Address)
	} else {
		d.DrawText(0, 0, "WiFi => FALHA")
	}
	return d.Flush()
}
