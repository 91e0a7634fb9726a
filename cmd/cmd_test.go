// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/devmgr/internal/config"
	"github.com/Thermoquad/devmgr/internal/dispatch"
	"github.com/Thermoquad/devmgr/internal/relay"
	"github.com/Thermoquad/devmgr/pkg/devcmd"
	"github.com/Thermoquad/devmgr/pkg/pelco"
)

func fixedData() json.RawMessage {
	return json.RawMessage(`{"user":"testUser","timestamp":1}`)
}

func TestParseCommandLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		code    devcmd.Code
		data    string
		wantErr string
	}{
		{name: "bare number", line: "1", code: devcmd.Start, data: `{"user":"testUser","timestamp":1}`},
		{name: "with data", line: `4 {"gain": 3}`, code: devcmd.Set, data: `{"gain": 3}`},
		{name: "padded", line: "  0  ", code: devcmd.Status, data: `{"user":"testUser","timestamp":1}`},
		{name: "out of table", line: "9", wantErr: "Invalid command. Available commands are: {"},
		{name: "not a number", line: "start", wantErr: "Invalid command."},
		{name: "bad json", line: "2 {oops", wantErr: "not valid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCommandLine(devcmd.Radar, tt.line, fixedData)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, tt.data, string(got.Data))
		})
	}
}

func TestParseCommandLine_Exit(t *testing.T) {
	for _, line := range []string{"exit", "EXIT", " Exit "} {
		_, err := parseCommandLine(devcmd.Radar, line, fixedData)
		assert.True(t, errors.Is(err, errExit), line)
	}
}

func TestParseCommandLine_CameraTable(t *testing.T) {
	got, err := parseCommandLine(devcmd.Camera, `35 {}`, fixedData)
	require.NoError(t, err)
	assert.Equal(t, devcmd.CoolerOff, got.Code)

	_, err = parseCommandLine(devcmd.Camera, "36", fixedData)
	assert.Error(t, err)
}

func TestIsReply(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{`{"response":{"message":"System started successfully."}}`, true},
		{`{"error":"Invalid command."}`, true},
		{`{"error":{"code":7},"lat":1}`, false},
		{`{"ICAO":"A1B2C3"}`, false},
		{`{"pelcoResponse":"FF 01 00 59 46 50 F0"}`, false},
		{`STATUS,OK`, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isReply(tt.msg), tt.msg)
	}
}

func TestLocalURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:4000", localURL(":4000"))
	assert.Equal(t, "ws://10.0.0.2:4002", localURL("10.0.0.2:4002"))
}

func TestSelectClasses(t *testing.T) {
	c := config.Defaults()

	all, err := selectClasses(c, nil)
	require.NoError(t, err)
	assert.Equal(t, devcmd.Classes(), all)

	some, err := selectClasses(c, []string{"ADSB", "radar", "adsb"})
	require.NoError(t, err)
	assert.Equal(t, []devcmd.Class{devcmd.ClassADSB, devcmd.ClassRadar}, some)

	c.Relays.Jammer.Enabled = false
	enabled, err := selectClasses(c, nil)
	require.NoError(t, err)
	assert.NotContains(t, enabled, devcmd.ClassJammer)

	_, err = selectClasses(c, []string{"jammer"})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = selectClasses(c, []string{"sonar"})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func setPelcoFlags(t *testing.T, variant string, address int, mapping string) {
	t.Helper()
	oldVariant, oldAddress, oldMapping := pelcoVariant, pelcoAddress, pelcoMapping
	pelcoVariant, pelcoAddress, pelcoMapping = variant, address, mapping
	t.Cleanup(func() {
		pelcoVariant, pelcoAddress, pelcoMapping = oldVariant, oldAddress, oldMapping
	})
}

func TestBuildActionFrame(t *testing.T) {
	tests := []struct {
		name    string
		variant string
		address int
		mapping string
		args    []string
		want    string
		wantErr string
	}{
		{name: "zoom tele", variant: "D", address: 1, mapping: "vendor", args: []string{"zoom_tele"}, want: "FF 01 00 20 00 00 21"},
		{name: "go to preset", variant: "D", address: 0, mapping: "standard", args: []string{"GO_TO_PRESET", "4"}, want: "FF 00 00 07 00 04 0B"},
		{name: "pelco-p", variant: "P", address: 1, mapping: "vendor", args: []string{"ZOOM_TELE"}, want: "A0 01 00 20 00 00 21"},
		{name: "unknown action", variant: "D", mapping: "vendor", args: []string{"JUMP"}, wantErr: "not in vendor mapping"},
		{name: "missing operand", variant: "D", mapping: "vendor", args: []string{"PAN_LEFT"}, wantErr: "needs speed"},
		{name: "unexpected operand", variant: "D", mapping: "vendor", args: []string{"ZOOM_TELE", "3"}, wantErr: "takes no value"},
		{name: "operand range", variant: "D", mapping: "vendor", args: []string{"PAN_LEFT", "256"}, wantErr: "out of range"},
		{name: "bad variant", variant: "X", mapping: "vendor", args: []string{"ZOOM_TELE"}, wantErr: "unknown PELCO variant"},
		{name: "bad address", variant: "D", address: 300, mapping: "vendor", args: []string{"ZOOM_TELE"}, wantErr: "outside 0-255"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setPelcoFlags(t, tt.variant, tt.address, tt.mapping)
			frame, err := buildActionFrame(tt.args)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, pelco.FormatHex(frame.Bytes()))
		})
	}
}

func TestFrameMonitor(t *testing.T) {
	codec := pelco.NewCodec(pelco.VariantD)
	good := codec.EncodeBytes(0x01, 0x00, 0x20, 0x00, 0x00)
	bad := []byte{0xFF, 0x01, 0x00, 0x20, 0x00, 0x00, 0x22}

	var out bytes.Buffer
	mon := newFrameMonitor(&out, codec, pelco.VendorMapping, true)

	// A corrupt frame before sync is only counted
	mon.feed(bad)
	assert.Zero(t, mon.stats.TotalFrames)

	mon.feed(append([]byte{0x00, 0x13}, good...))
	assert.Contains(t, out.String(), "Synchronized after skipping 1 corrupt frames")
	assert.Contains(t, out.String(), "ZOOM_TELE")

	mon.feed(bad)
	assert.Contains(t, out.String(), "DECODE ERROR")
	assert.Equal(t, uint64(2), mon.stats.TotalFrames)
	assert.Equal(t, uint64(1), mon.stats.ValidFrames)
	assert.Equal(t, uint64(1), mon.stats.ChecksumErrors)
}

func TestFrameMonitor_ErrorsOnly(t *testing.T) {
	codec := pelco.NewCodec(pelco.VariantD)

	var out bytes.Buffer
	mon := newFrameMonitor(&out, codec, pelco.VendorMapping, false)
	mon.feed(codec.EncodeBytes(0x01, 0x00, 0x20, 0x00, 0x00))
	assert.NotContains(t, out.String(), "ZOOM_TELE")

	// Pan speed above 0x3F that is not turbo
	mon.feed(codec.EncodeBytes(0x01, 0x00, 0x04, 0x50, 0x00))
	assert.Contains(t, out.String(), "VALIDATION ERROR")
	assert.Contains(t, out.String(), "Pan speed")
	assert.Equal(t, uint64(1), mon.stats.Anomalies)
}

func testRelayConfig() *config.RelayConfig {
	return &config.RelayConfig{
		Enabled:      true,
		WSListen:     "127.0.0.1:0",
		QueueSize:    8,
		WriteTimeout: time.Second,
	}
}

func testLog() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(log)
}

func startServer(t *testing.T, srv *relay.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("relay did not stop")
		}
	})

	select {
	case <-srv.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("relay not ready")
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr().String(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return srv.Bridge.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func TestDialRelay_RejectsScheme(t *testing.T) {
	for _, u := range []string{"http://localhost:4000", "localhost:4000", "://bad"} {
		_, err := DialRelay(context.Background(), u, false)
		assert.Error(t, err, u)
	}
}

func TestDialRelay_SendAndReceive(t *testing.T) {
	b := relay.NewBridge(relay.Options{
		Name:       "radar",
		Dispatcher: dispatch.NewSystem(devcmd.Radar, nil),
		Log:        testLog(),
	})
	srv := httptest.NewServer(b)
	defer srv.Close()

	conn, err := DialRelay(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), false)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Send(devcmd.Status, fixedData()))
	msg, err := conn.Next()
	require.NoError(t, err)
	assert.Contains(t, msg, "System status: Operational.")

	require.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.SendRaw([]byte("{}")), ErrConnectionClosed)
}

func TestBuildServer_RadarForwardsToDevice(t *testing.T) {
	device, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer device.Close()

	rc := testRelayConfig()
	rc.DeviceAddr = device.LocalAddr().String()

	srv, err := buildServer(devcmd.ClassRadar, rc, testLog(), nil)
	require.NoError(t, err)
	assert.Nil(t, srv.UDP)
	assert.Equal(t, "radar", srv.Bridge.Name())

	conn := startServer(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"command":1,"data":{"user":"op"}}`)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var reply relay.Reply
	require.NoError(t, json.Unmarshal(data, &reply))
	require.NotNil(t, reply.Response)
	assert.Equal(t, "System started successfully.", reply.Response.Message)
	assert.Equal(t, dispatch.DeliverySent, reply.Response.Delivery)

	buf := make([]byte, 512)
	device.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := device.ReadFrom(buf)
	require.NoError(t, err)

	var sent dispatch.SystemCommand
	require.NoError(t, json.Unmarshal(buf[:n], &sent))
	assert.Equal(t, devcmd.Start, sent.Command)
	assert.Equal(t, "START", sent.Name)
	assert.JSONEq(t, `{"user":"op"}`, string(sent.Data))
}

func TestBuildServer_ADSBEnvelope(t *testing.T) {
	rc := testRelayConfig()
	rc.UDPListen = "127.0.0.1:0"
	rc.Encoding = "json"

	srv, err := buildServer(devcmd.ClassADSB, rc, testLog(), nil)
	require.NoError(t, err)
	require.NotNil(t, srv.UDP)
	assert.Equal(t, relay.ADSB{Encoding: "json"}, srv.UDPEnvelope)

	conn := startServer(t, srv)

	feeder, err := net.Dial("udp", srv.UDP.LocalAddr().String())
	require.NoError(t, err)
	defer feeder.Close()
	payload := "#A:A1B2C3,FL350,30000,45.1234,-122.5678,450,90,0,1200,N12345,1,0,0,0,0,0,1A2B\r\n"
	_, err = feeder.Write([]byte(payload))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), `{"ICAO":"A1B2C3"`), string(data))
}

func TestBuildServer_CameraWithoutSerial(t *testing.T) {
	rc := testRelayConfig()
	rc.Pelco = config.PelcoConfig{Variant: "D", Address: 1, Mapping: "vendor"}

	srv, err := buildServer(devcmd.ClassCamera, rc, testLog(), nil)
	require.NoError(t, err)
	assert.Nil(t, srv.Serial)

	conn := startServer(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"command":6}`)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var reply relay.Reply
	require.NoError(t, json.Unmarshal(data, &reply))
	require.NotNil(t, reply.Response)
	assert.Equal(t, "ZOOM_TELE", reply.Response.Message)
	assert.Equal(t, "FF 01 00 20 00 00 21", reply.Response.Frame)
	assert.Equal(t, dispatch.DeliveryNone, reply.Response.Delivery)
}

func TestBuildServer_CameraIgnoresDeviceAddr(t *testing.T) {
	rc := testRelayConfig()
	rc.Pelco = config.PelcoConfig{Variant: "D", Address: 1, Mapping: "vendor"}
	rc.DeviceAddr = "127.0.0.1:5000"

	srv, err := buildServer(devcmd.ClassCamera, rc, testLog(), nil)
	require.NoError(t, err)
	assert.Empty(t, srv.Closers)
	closeServer(srv)
}

func TestBuildServer_SerialOpenFailureIsNotFatal(t *testing.T) {
	rc := testRelayConfig()
	rc.Pelco = config.PelcoConfig{Variant: "P", Mapping: "standard"}
	rc.Serial = config.SerialConfig{Enabled: true, Port: "/dev/devmgr-test-missing", BaudRate: 9600}

	srv, err := buildServer(devcmd.ClassCamera, rc, testLog(), nil)
	require.NoError(t, err)
	assert.Nil(t, srv.Serial)
	assert.Nil(t, srv.SerialEnvelope)
}

func TestBuildServer_BadDeviceAddr(t *testing.T) {
	rc := testRelayConfig()
	rc.UDPListen = "127.0.0.1:0"
	rc.DeviceAddr = "not-an-address"

	_, err := buildServer(devcmd.ClassJammer, rc, testLog(), nil)
	assert.Error(t, err)
}

func TestBuildMirror_NoSinks(t *testing.T) {
	assert.Nil(t, buildMirror(context.Background(), config.Defaults().Mirror, testLog()))
}

func TestBuildMirror_UnreachableSinkIsSkipped(t *testing.T) {
	// Reserve and release a port so nothing listens on it
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	mc := config.Defaults().Mirror
	mc.Redis.Addr = addr

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.Nil(t, buildMirror(ctx, mc, testLog()))
}

func TestNextvisionCommand(t *testing.T) {
	var out bytes.Buffer
	nextvisionCmd.SetOut(&out)
	defer nextvisionCmd.SetOut(nil)

	nextvisionJSON = false
	require.NoError(t, nextvisionCmd.RunE(nextvisionCmd, []string{"SET_MODE", "3"}))
	assert.Equal(t, "COMMAND_LONG target=1/1 command=203 confirmation=0 params=[0 3 0 0 0 0 0]\n", out.String())

	out.Reset()
	nextvisionJSON = true
	defer func() { nextvisionJSON = false }()
	require.NoError(t, nextvisionCmd.RunE(nextvisionCmd, []string{"snapshot"}))
	assert.Contains(t, out.String(), `"command": 203`)

	assert.Error(t, nextvisionCmd.RunE(nextvisionCmd, []string{"zoom"}))
	assert.Error(t, nextvisionCmd.RunE(nextvisionCmd, []string{"set_mode", "x"}))
}
